package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/ganot/wtmpdb/internal/domain/wtmp"
	"github.com/ganot/wtmpdb/internal/report"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	SessionsURI = "wtmpdb://sessions"
	BootTimeURI = "wtmpdb://boottime"
)

type ledgerResource struct {
	URI         string
	Name        string
	Title       string
	Description string
	MIMEType    string
	Read        func(ctx context.Context, ledger wtmp.Ledger) (string, error)
}

var ledgerResources = []ledgerResource{
	{
		URI:         SessionsURI,
		Name:        "sessions",
		Title:       "Session ledger",
		Description: "Every login and boot session, newest first, with ISO 8601 timestamps.",
		MIMEType:    "application/json",
		Read:        readSessions,
	},
	{
		URI:         BootTimeURI,
		Name:        "boottime",
		Title:       "Latest boot",
		Description: "Time of the most recent system boot.",
		MIMEType:    "text/plain",
		Read:        readBootTime,
	},
}

func registerResources(server *sdkmcp.Server, ledger wtmp.Ledger) {
	for _, res := range ledgerResources {
		server.AddResource(&sdkmcp.Resource{
			URI:         res.URI,
			Name:        res.Name,
			Title:       res.Title,
			Description: res.Description,
			MIMEType:    res.MIMEType,
		}, func(ctx context.Context, req *sdkmcp.ReadResourceRequest) (*sdkmcp.ReadResourceResult, error) {
			uri := res.URI
			if req != nil && req.Params != nil && req.Params.URI != "" {
				uri = req.Params.URI
			}
			text, err := res.Read(ctx, ledger)
			if err != nil {
				return nil, fmt.Errorf("read %s: %w", uri, err)
			}
			return &sdkmcp.ReadResourceResult{
				Contents: []*sdkmcp.ResourceContents{{
					URI:      uri,
					MIMEType: res.MIMEType,
					Text:     text,
				}},
			}, nil
		})
	}
}

func readSessions(ctx context.Context, ledger wtmp.Ledger) (string, error) {
	listing, err := report.Build(ledger.ReadAll(ctx), report.Options{ISO: true})
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(listing); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func readBootTime(ctx context.Context, ledger wtmp.Ledger) (string, error) {
	boot, err := ledger.BootTime(ctx)
	if err != nil {
		return "", err
	}
	return boot.Time().Format(isoTime) + "\n", nil
}
