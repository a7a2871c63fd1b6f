package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/extensivelabs/agentecs-viz/internal/core/diff"
	"github.com/extensivelabs/agentecs-viz/internal/core/models"
	"github.com/extensivelabs/agentecs-viz/internal/core/protocol"
)

// DiffOptions holds flags for the diff command.
type DiffOptions struct {
	*RootOptions
	Entity int64
	Format string
}

// NewDiffCommand creates the diff command.
func NewDiffCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DiffOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "diff OLD NEW",
		Short: "Diff two saved world snapshots",
		Long: `Compare two world snapshots saved as JSON, either bare snapshot objects or
full "snapshot" frames as sent by the server, and print per-entity changes.

Examples:
  agentecs-viz diff tick-10.json tick-20.json
  agentecs-viz diff tick-10.json tick-20.json --entity 42
  agentecs-viz diff tick-10.json tick-20.json --format json`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiff(cmd, opts, args[0], args[1])
		},
	}

	cmd.Flags().Int64Var(&opts.Entity, "entity", -1, "only diff this entity id")
	cmd.Flags().StringVar(&opts.Format, "format", "text", "output format (text|json)")

	return cmd
}

func runDiff(cmd *cobra.Command, opts *DiffOptions, oldPath, newPath string) error {
	if opts.Format != "text" && opts.Format != "json" {
		return fmt.Errorf("invalid format %q: must be text or json", opts.Format)
	}

	oldSnap, err := readSnapshot(oldPath)
	if err != nil {
		return err
	}
	newSnap, err := readSnapshot(newPath)
	if err != nil {
		return err
	}

	diffs := diffSnapshots(oldSnap, newSnap, opts.Entity)

	w := cmd.OutOrStdout()
	if opts.Format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(diffs)
	}

	for _, d := range diffs {
		if err := diff.Write(w, d); err != nil {
			return err
		}
	}
	if opts.Entity < 0 {
		_, err = fmt.Fprintf(w, "%d of %d entities changed (tick %d -> %d)\n",
			len(diffs), countIDs(oldSnap, newSnap), oldSnap.Tick, newSnap.Tick)
	}
	return err
}

// diffSnapshots returns non-empty entity diffs ordered by id. With only >= 0
// the single entity is always reported, even when unchanged.
func diffSnapshots(oldSnap, newSnap *models.WorldSnapshot, only int64) []diff.EntityDiff {
	oldIdx, newIdx := oldSnap.Index(), newSnap.Index()

	var ids []models.EntityID
	if only >= 0 {
		ids = []models.EntityID{models.EntityID(only)}
	} else {
		seen := make(map[models.EntityID]struct{}, len(oldIdx)+len(newIdx))
		for id := range oldIdx {
			seen[id] = struct{}{}
		}
		for id := range newIdx {
			seen[id] = struct{}{}
		}
		for id := range seen {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	}

	out := make([]diff.EntityDiff, 0, len(ids))
	for _, id := range ids {
		var oldE, newE *models.Entity
		if e, ok := oldIdx[id]; ok {
			oldE = &e
		}
		if e, ok := newIdx[id]; ok {
			newE = &e
		}
		d := diff.Entities(oldE, newE)
		if only >= 0 {
			d.EntityID = id
			out = append(out, d)
			continue
		}
		if !d.Empty() {
			out = append(out, d)
		}
	}
	return out
}

func countIDs(a, b *models.WorldSnapshot) int {
	ids := a.Index()
	for id := range b.Index() {
		ids[id] = models.Entity{}
	}
	return len(ids)
}

// readSnapshot accepts a bare snapshot object or a snapshot frame.
func readSnapshot(path string) (*models.WorldSnapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read snapshot")
	}

	var frame struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &frame); err != nil {
		return nil, errors.Wrapf(err, "%s is not valid JSON", path)
	}

	if frame.Type != "" {
		msg, err := protocol.Decode(data)
		if err != nil {
			return nil, errors.Wrapf(err, "%s", path)
		}
		snap, ok := msg.(protocol.Snapshot)
		if !ok {
			return nil, errors.Errorf("%s holds a %s frame, not a snapshot", path, msg.Type())
		}
		return snap.Snapshot, nil
	}

	var snap models.WorldSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, errors.Wrapf(err, "failed to decode %s", path)
	}
	return &snap, nil
}
