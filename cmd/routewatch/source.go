package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/newtron-network/routewatch/pkg/model"
	"github.com/newtron-network/routewatch/pkg/publish"
	"github.com/newtron-network/routewatch/pkg/server"
	"github.com/newtron-network/routewatch/pkg/version"
)

// sourceFlags select where show and export read the snapshot from.
type sourceFlags struct {
	file      string
	serverURL string
}

func (f *sourceFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.file, "file", "", "Snapshot file (default output.file)")
	cmd.Flags().StringVar(&f.serverURL, "server", "", "Fetch the snapshot from a running routewatch, e.g. http://host:8043")
	cmd.MarkFlagsMutuallyExclusive("file", "server")
}

func (f *sourceFlags) load(ctx context.Context) (*model.Snapshot, error) {
	if f.serverURL != "" {
		return fetchSnapshot(ctx, f.serverURL)
	}
	path := f.file
	if path == "" && app.settings != nil {
		path = app.settings.Output.File
	}
	if path == "" {
		path = publish.DefaultFile
	}
	return readSnapshot(path)
}

func readSnapshot(path string) (*model.Snapshot, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()
	s, err := model.Decode(fh)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

func fetchSnapshot(ctx context.Context, base string) (*model.Snapshot, error) {
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	url := strings.TrimRight(base, "/") + "/snapshot"

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch snapshot: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var e server.ErrorResponse
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if json.Unmarshal(body, &e) == nil && e.Message != "" {
			return nil, fmt.Errorf("fetch snapshot: %s: %s", resp.Status, e.Message)
		}
		return nil, fmt.Errorf("fetch snapshot: %s", resp.Status)
	}
	return model.Decode(resp.Body)
}
