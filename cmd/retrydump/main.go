// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// retrydump inspects the on-disk retry queue of the Azure Monitor exporter.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/DataDog/opentelemetry-exporter-azuremonitor/pkg/contracts"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var dir string
	root := &cobra.Command{
		Use:          "retrydump",
		Short:        "Inspect pending Azure Monitor retry batches",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&dir, "dir", "", "retry storage directory")
	root.MarkPersistentFlagRequired("dir") //nolint:errcheck

	root.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List pending batch files with envelope counts and age",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return listBatches(cmd.OutOrStdout(), dir)
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "dump <file>",
		Short: "Pretty-print the envelopes of one batch file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return dumpBatch(cmd.OutOrStdout(), filepath.Join(dir, args[0]))
		},
	})
	return root
}

func listBatches(w io.Writer, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	now := time.Now()
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasSuffix(name, ".blob") && !strings.HasSuffix(name, ".blob.lock") {
			continue
		}
		envelopes, err := readBatch(filepath.Join(dir, name))
		if err != nil {
			fmt.Fprintf(w, "%s\tunreadable: %v\n", name, err)
			continue
		}
		age := "?"
		if info, err := entry.Info(); err == nil {
			age = now.Sub(info.ModTime()).Round(time.Second).String()
		}
		fmt.Fprintf(w, "%s\t%d envelopes\tage %s\n", name, len(envelopes), age)
	}
	return nil
}

func dumpBatch(w io.Writer, path string) error {
	envelopes, err := readBatch(path)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(envelopes)
}

func readBatch(path string) ([]*contracts.Envelope, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var envelopes []*contracts.Envelope
	if err := json.Unmarshal(buf, &envelopes); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", filepath.Base(path), err)
	}
	return envelopes, nil
}
