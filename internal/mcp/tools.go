package mcp

import (
	"context"

	"github.com/ganot/wtmpdb/internal/domain/wtmp"
	"github.com/ganot/wtmpdb/internal/report"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

const isoTime = "2006-01-02T15:04:05-0700"

// LastInput filters the last tool listing.
type LastInput struct {
	Limit int      `json:"limit,omitempty" jsonschema:"maximum number of entries, 0 for all"`
	Match []string `json:"match,omitempty" jsonschema:"only entries whose user or tty is in this list"`
}

// BootTimeOutput is returned by the boot_time tool.
type BootTimeOutput struct {
	BootTime string `json:"boot_time"`
	Usec     uint64 `json:"usec"`
}

func registerTools(server *sdkmcp.Server, ledger wtmp.Ledger) {
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "last",
		Description: "List login and boot sessions, newest first",
	}, func(ctx context.Context, _ *sdkmcp.CallToolRequest, in LastInput) (*sdkmcp.CallToolResult, report.Listing, error) {
		listing, err := report.Build(ledger.ReadAll(ctx), report.Options{
			Limit: in.Limit,
			Match: in.Match,
			ISO:   true,
		})
		if err != nil {
			return nil, report.Listing{}, err
		}
		return nil, listing, nil
	})

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "boot_time",
		Description: "Time of the most recent system boot",
	}, func(ctx context.Context, _ *sdkmcp.CallToolRequest, _ struct{}) (*sdkmcp.CallToolResult, BootTimeOutput, error) {
		boot, err := ledger.BootTime(ctx)
		if err != nil {
			return nil, BootTimeOutput{}, err
		}
		return nil, BootTimeOutput{
			BootTime: boot.Time().Format(isoTime),
			Usec:     uint64(boot),
		}, nil
	})
}
