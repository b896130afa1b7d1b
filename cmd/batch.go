package cmd

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tanq16/ripfetch/internal/scheduler"
	"github.com/tanq16/ripfetch/internal/utils"
)

// BatchFile groups entries by task type when the YAML document is a mapping
// rather than a plain list of tasks.
type BatchFile map[string][]utils.Task

func newBatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch [YAML_FILE or URL]",
		Short: "Process multiple downloads from a YAML list",
		Long: `Process multiple downloads from a YAML list, read from a file or fetched
from a URL. The document is either a list of tasks or a mapping from task
type to tasks:

  - link: https://example.com/a.zip
    op: downloads/
  - link: s3://bucket/key
    type: s3

  http:
    - link: https://example.com/a.zip
      resume: true
  stream:
    - link: https://example.com/video.mp4
      op: videos/video.mp4`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readBatch(cmd, args[0])
			if err != nil {
				return err
			}
			tasks, err := parseBatch(data)
			if err != nil {
				return err
			}
			if len(tasks) == 0 {
				return fmt.Errorf("no valid tasks found in the batch file")
			}
			return runTasks(cfg, tasks)
		},
	}
	return cmd
}

func readBatch(cmd *cobra.Command, source string) ([]byte, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		data, err := fetchBody(cmd.Context(), cfg, source, true)
		if err != nil {
			return nil, fmt.Errorf("error fetching batch list: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(source)
	if err != nil {
		return nil, fmt.Errorf("error reading YAML file: %w", err)
	}
	return data, nil
}

func parseBatch(data []byte) ([]*utils.Task, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("error parsing YAML file: %w", err)
	}
	if len(root.Content) == 0 {
		return nil, nil
	}

	var entries []utils.Task
	switch root.Content[0].Kind {
	case yaml.SequenceNode:
		if err := root.Content[0].Decode(&entries); err != nil {
			return nil, fmt.Errorf("error parsing YAML file: %w", err)
		}
	case yaml.MappingNode:
		var grouped BatchFile
		if err := root.Content[0].Decode(&grouped); err != nil {
			return nil, fmt.Errorf("error parsing YAML file: %w", err)
		}
		kinds := make([]string, 0, len(grouped))
		for kind := range grouped {
			kinds = append(kinds, kind)
		}
		sort.Strings(kinds)
		for _, kind := range kinds {
			for _, entry := range grouped[kind] {
				entry.Kind = kind
				entries = append(entries, entry)
			}
		}
	default:
		return nil, fmt.Errorf("error parsing YAML file: expected a list or a mapping")
	}

	var tasks []*utils.Task
	for _, entry := range entries {
		if entry.URL == "" {
			log.Warn().Str("op", "cmd/batch").Msg("Empty link found in batch file, skipping")
			continue
		}
		if entry.Kind != "" {
			kind := normalizeTaskType(entry.Kind)
			if kind == "" {
				log.Warn().Str("op", "cmd/batch").Str("type", entry.Kind).Msg("Unknown task type, skipping")
				continue
			}
			entry.Kind = kind
		}
		task := entry
		tasks = append(tasks, &task)
	}
	return tasks, nil
}

func normalizeTaskType(taskType string) string {
	typeMap := map[string]string{
		"http":   scheduler.KindHTTP,
		"https":  scheduler.KindHTTP,
		"file":   scheduler.KindHTTP,
		"stream": scheduler.KindStream,
		"video":  scheduler.KindStream,
		"s3":     scheduler.KindS3,
	}
	return typeMap[strings.ToLower(taskType)]
}
