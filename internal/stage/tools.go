package stage

import "context"

// ToolsStage looks up, via the translator dictionary, every companion
// tool registered for each detected CMS.
type ToolsStage struct{}

func (ToolsStage) Name() string { return "tools" }

func (ToolsStage) Run(ctx context.Context, sc *ScanContext) error {
	detected := sc.Results.VersionsFor("cms")
	if len(detected) == 0 {
		return nil
	}
	for name := range detected {
		for _, entry := range sc.Catalog.Dictionary {
			if entry.Name != name {
				continue
			}
			for _, tool := range entry.Tools {
				sc.Results.AddTool(name, tool.Name, tool.Link)
			}
		}
	}
	return nil
}
