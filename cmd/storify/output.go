package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/sagarc03/storify"
	"github.com/sagarc03/storify/config"
)

// Formatter renders command results. The human formatter writes aligned
// plain text, the JSON formatter one indented document. Content commands
// (cat, head, tail, grep, diff, tree) stream raw text and bypass this
// entirely.
type Formatter interface {
	Entries(w io.Writer, entries []storify.Entry) error
	Stat(w io.Writer, e storify.Entry) error
	Du(w io.Writer, rows []storify.DuRow) error
	Touch(w io.Writer, results []storify.TouchResult) error
	Remove(w io.Writer, results []storify.RemoveResult) error
	Transfers(w io.Writer, report *storify.TransferReport) error
	Appended(w io.Writer, path string, n int64) error
	Mkdir(w io.Writer, path string) error
	Moved(w io.Writer, src, dst string) error
	ProfileList(w io.Writer, rec *config.Record, showSecrets bool) error
	ProfileShow(w io.Writer, p config.Profile, isDefault, showSecrets bool) error
	Message(w io.Writer, format string, args ...any) error
	Error(w io.Writer, err error) error
}

func getFormatter() Formatter {
	if jsonOutput {
		return &JSONFormatter{}
	}
	return &HumanFormatter{Quiet: quiet}
}

// HumanFormatter writes human-readable output. Quiet suppresses success
// chatter; failures always print.
type HumanFormatter struct {
	Quiet bool
}

func (f *HumanFormatter) Entries(w io.Writer, entries []storify.Entry) error {
	for i := range entries {
		e := &entries[i]
		if _, err := fmt.Fprintf(w, "%-9s  %10s  %-19s  %s\n",
			e.Kind, entrySize(*e), entryTime(*e), e.Path); err != nil {
			return err
		}
	}
	return nil
}

func (f *HumanFormatter) Stat(w io.Writer, e storify.Entry) error {
	fmt.Fprintf(w, "Path:      %s\n", e.Path)
	fmt.Fprintf(w, "Kind:      %s\n", e.Kind)
	if !e.IsDir() && e.Size >= 0 {
		fmt.Fprintf(w, "Size:      %s (%d)\n", storify.FormatSize(e.Size), e.Size)
	} else {
		fmt.Fprintf(w, "Size:      -\n")
	}
	fmt.Fprintf(w, "Modified:  %s\n", entryTime(e))
	return nil
}

func (f *HumanFormatter) Du(w io.Writer, rows []storify.DuRow) error {
	for _, r := range rows {
		if _, err := fmt.Fprintf(w, "%10s  %s\n", storify.FormatSize(r.Bytes), r.Path); err != nil {
			return err
		}
	}
	return nil
}

func (f *HumanFormatter) Touch(w io.Writer, results []storify.TouchResult) error {
	for _, r := range results {
		switch {
		case r.Err != nil:
			if len(results) > 1 {
				fmt.Fprintf(w, "Failed: %s - %v\n", r.Path, r.Err)
			}
		case f.Quiet:
		case r.Outcome == storify.TouchCreated:
			fmt.Fprintf(w, "Created: %s\n", r.Path)
		case r.Outcome == storify.TouchTruncated:
			fmt.Fprintf(w, "Truncated: %s\n", r.Path)
		}
	}
	return nil
}

func (f *HumanFormatter) Remove(w io.Writer, results []storify.RemoveResult) error {
	for _, r := range results {
		switch {
		case r.Err != nil:
			if len(results) > 1 {
				fmt.Fprintf(w, "Failed: %s - %v\n", r.Path, r.Err)
			}
		case f.Quiet:
		case r.Removed > 1:
			fmt.Fprintf(w, "Removed: %s (%d objects)\n", r.Path, r.Removed)
		default:
			fmt.Fprintf(w, "Removed: %s\n", r.Path)
		}
	}
	return nil
}

func (f *HumanFormatter) Transfers(w io.Writer, report *storify.TransferReport) error {
	for i := range report.Tasks {
		t := &report.Tasks[i]
		switch t.Status {
		case storify.StatusDone:
			if !f.Quiet {
				fmt.Fprintf(w, "%s: %s -> %s (%s)\n",
					transferVerb(t.Direction), t.Source, t.Destination, storify.FormatSize(t.BytesDone))
			}
		case storify.StatusFailed:
			fmt.Fprintf(w, "Failed: %s -> %s - %v\n", t.Source, t.Destination, taskError(t))
		}
	}
	if !f.Quiet && len(report.Tasks) > 1 {
		failed := len(report.Failed())
		fmt.Fprintf(w, "%d file(s) transferred (%s)", len(report.Tasks)-failed, storify.FormatSize(report.Bytes()))
		if failed > 0 {
			fmt.Fprintf(w, ", %d failed", failed)
		}
		fmt.Fprintln(w)
	}
	return nil
}

func (f *HumanFormatter) Appended(w io.Writer, path string, n int64) error {
	if f.Quiet {
		return nil
	}
	_, err := fmt.Fprintf(w, "Appended %s to %s\n", storify.FormatSize(n), path)
	return err
}

func (f *HumanFormatter) Mkdir(w io.Writer, path string) error {
	if f.Quiet {
		return nil
	}
	_, err := fmt.Fprintf(w, "Created: %s\n", path)
	return err
}

func (f *HumanFormatter) Moved(w io.Writer, src, dst string) error {
	if f.Quiet {
		return nil
	}
	_, err := fmt.Fprintf(w, "Moved: %s -> %s\n", src, dst)
	return err
}

func (f *HumanFormatter) ProfileList(w io.Writer, rec *config.Record, showSecrets bool) error {
	temp := rec.LiveTemporary(time.Now())
	if len(rec.Profiles) == 0 && temp == nil {
		fmt.Fprintln(w, "No profiles configured.")
		fmt.Fprintln(w, "Run 'storify config create <name>' to add one.")
		return nil
	}

	if len(rec.Profiles) > 0 {
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tPROVIDER\tTARGET\tACCESS KEY\tDEFAULT")
		for _, p := range rec.Profiles {
			marker := ""
			if p.Name == rec.Default {
				marker = "*"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
				p.Name, p.Provider, profileTarget(p), maskSecret(p.AccessKeyID, showSecrets), marker)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	if temp != nil {
		fmt.Fprintf(w, "Temporary configuration active until %s (provider %s).\n",
			temp.ExpiresAt.Format(time.RFC3339), temp.Provider)
	}
	return nil
}

func (f *HumanFormatter) ProfileShow(w io.Writer, p config.Profile, isDefault, showSecrets bool) error {
	name := p.Name
	if name == "" {
		name = "(temporary)"
	}
	if isDefault {
		name += " (default)"
	}
	fmt.Fprintf(w, "Name:        %s\n", name)
	fmt.Fprintf(w, "Provider:    %s\n", p.Provider)
	if p.Bucket != "" {
		fmt.Fprintf(w, "Bucket:      %s\n", p.Bucket)
	}
	if p.Endpoint != "" {
		fmt.Fprintf(w, "Endpoint:    %s\n", p.Endpoint)
	}
	if p.Region != "" {
		fmt.Fprintf(w, "Region:      %s\n", p.Region)
	}
	if p.RootPath != "" {
		fmt.Fprintf(w, "Root path:   %s\n", p.RootPath)
	}
	if p.NameNode != "" {
		fmt.Fprintf(w, "Name node:   %s\n", p.NameNode)
	}
	if p.Anonymous {
		fmt.Fprintf(w, "Anonymous:   true\n")
	}
	fmt.Fprintf(w, "Access key:  %s\n", maskSecret(p.AccessKeyID, showSecrets))
	fmt.Fprintf(w, "Secret key:  %s\n", maskSecret(p.AccessKeySecret, showSecrets))
	return nil
}

func (f *HumanFormatter) Message(w io.Writer, format string, args ...any) error {
	if f.Quiet {
		return nil
	}
	_, err := fmt.Fprintf(w, format+"\n", args...)
	return err
}

func (f *HumanFormatter) Error(w io.Writer, err error) error {
	if errors.Is(err, storify.ErrInterrupted) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		_, werr := fmt.Fprintln(w, "Interrupted.")
		return werr
	}
	_, werr := fmt.Fprintf(w, "Error: %v\n", err)
	return werr
}

// JSONFormatter writes one indented JSON document per command.
type JSONFormatter struct{}

func (f *JSONFormatter) Entries(w io.Writer, entries []storify.Entry) error {
	if entries == nil {
		entries = []storify.Entry{}
	}
	return writeJSON(w, entries)
}

func (f *JSONFormatter) Stat(w io.Writer, e storify.Entry) error {
	return writeJSON(w, e)
}

func (f *JSONFormatter) Du(w io.Writer, rows []storify.DuRow) error {
	if rows == nil {
		rows = []storify.DuRow{}
	}
	return writeJSON(w, rows)
}

func (f *JSONFormatter) Touch(w io.Writer, results []storify.TouchResult) error {
	type row struct {
		Path    string               `json:"path"`
		Outcome storify.TouchOutcome `json:"outcome,omitempty"`
		Error   string               `json:"error,omitempty"`
	}
	rows := make([]row, 0, len(results))
	for _, r := range results {
		rows = append(rows, row{Path: r.Path, Outcome: r.Outcome, Error: errText(r.Err)})
	}
	return writeJSON(w, rows)
}

func (f *JSONFormatter) Remove(w io.Writer, results []storify.RemoveResult) error {
	type row struct {
		Path    string `json:"path"`
		Removed int64  `json:"removed"`
		Error   string `json:"error,omitempty"`
	}
	rows := make([]row, 0, len(results))
	for _, r := range results {
		rows = append(rows, row{Path: r.Path, Removed: r.Removed, Error: errText(r.Err)})
	}
	return writeJSON(w, rows)
}

func (f *JSONFormatter) Transfers(w io.Writer, report *storify.TransferReport) error {
	type task struct {
		storify.TransferTask
		Error string `json:"error,omitempty"`
	}
	tasks := make([]task, 0, len(report.Tasks))
	for _, t := range report.Tasks {
		tasks = append(tasks, task{TransferTask: t, Error: errText(t.Err)})
	}
	return writeJSON(w, struct {
		Tasks  []task `json:"tasks"`
		Bytes  int64  `json:"bytes"`
		Failed int    `json:"failed"`
	}{Tasks: tasks, Bytes: report.Bytes(), Failed: len(report.Failed())})
}

func (f *JSONFormatter) Appended(w io.Writer, path string, n int64) error {
	return writeJSON(w, struct {
		Path          string `json:"path"`
		BytesAppended int64  `json:"bytes_appended"`
	}{Path: path, BytesAppended: n})
}

func (f *JSONFormatter) Mkdir(w io.Writer, path string) error {
	return writeJSON(w, struct {
		Path    string `json:"path"`
		Created bool   `json:"created"`
	}{Path: path, Created: true})
}

func (f *JSONFormatter) Moved(w io.Writer, src, dst string) error {
	return writeJSON(w, struct {
		Source      string `json:"source"`
		Destination string `json:"destination"`
	}{Source: src, Destination: dst})
}

func (f *JSONFormatter) ProfileList(w io.Writer, rec *config.Record, showSecrets bool) error {
	profiles := make([]profileJSON, 0, len(rec.Profiles))
	for _, p := range rec.Profiles {
		profiles = append(profiles, newProfileJSON(p, p.Name == rec.Default, showSecrets))
	}
	var temp *profileJSON
	if t := rec.LiveTemporary(time.Now()); t != nil {
		tj := newProfileJSON(t.Profile, false, showSecrets)
		tj.ExpiresAt = t.ExpiresAt.Format(time.RFC3339)
		temp = &tj
	}
	return writeJSON(w, struct {
		Profiles  []profileJSON `json:"profiles"`
		Default   string        `json:"default,omitempty"`
		Temporary *profileJSON  `json:"temporary,omitempty"`
	}{Profiles: profiles, Default: rec.Default, Temporary: temp})
}

func (f *JSONFormatter) ProfileShow(w io.Writer, p config.Profile, isDefault, showSecrets bool) error {
	return writeJSON(w, newProfileJSON(p, isDefault, showSecrets))
}

func (f *JSONFormatter) Message(w io.Writer, format string, args ...any) error {
	return writeJSON(w, struct {
		Message string `json:"message"`
	}{Message: fmt.Sprintf(format, args...)})
}

func (f *JSONFormatter) Error(w io.Writer, err error) error {
	return writeJSON(w, struct {
		Error string `json:"error"`
		Kind  string `json:"kind,omitempty"`
	}{Error: err.Error(), Kind: storify.Kind(err)})
}

type profileJSON struct {
	Name            string `json:"name,omitempty"`
	Provider        string `json:"provider"`
	Bucket          string `json:"bucket,omitempty"`
	AccessKeyID     string `json:"access_key_id,omitempty"`
	AccessKeySecret string `json:"access_key_secret,omitempty"`
	Endpoint        string `json:"endpoint,omitempty"`
	Region          string `json:"region,omitempty"`
	RootPath        string `json:"root_path,omitempty"`
	NameNode        string `json:"name_node,omitempty"`
	Anonymous       bool   `json:"anonymous,omitempty"`
	Default         bool   `json:"default,omitempty"`
	ExpiresAt       string `json:"expires_at,omitempty"`
}

func newProfileJSON(p config.Profile, isDefault, showSecrets bool) profileJSON {
	return profileJSON{
		Name:            p.Name,
		Provider:        string(p.Provider),
		Bucket:          p.Bucket,
		AccessKeyID:     maskIfSet(p.AccessKeyID, showSecrets),
		AccessKeySecret: maskIfSet(p.AccessKeySecret, showSecrets),
		Endpoint:        p.Endpoint,
		Region:          p.Region,
		RootPath:        p.RootPath,
		NameNode:        p.NameNode,
		Anonymous:       p.Anonymous,
		Default:         isDefault,
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// maskSecret hides all but a hint of a credential. Short values are fully
// masked so the hint never reveals most of the secret.
func maskSecret(secret string, show bool) string {
	if show {
		return secret
	}
	if secret == "" {
		return "(not set)"
	}
	if len(secret) <= 8 {
		return "********"
	}
	return secret[:4] + "..." + secret[len(secret)-4:]
}

// maskIfSet is maskSecret for JSON output, where an unset field should stay
// empty instead of reading "(not set)".
func maskIfSet(secret string, show bool) string {
	if secret == "" {
		return ""
	}
	return maskSecret(secret, show)
}

func entrySize(e storify.Entry) string {
	if e.IsDir() || e.Size < 0 {
		return "-"
	}
	return storify.FormatSize(e.Size)
}

func entryTime(e storify.Entry) string {
	if e.ModTime.IsZero() {
		return "-"
	}
	return e.ModTime.Format("2006-01-02 15:04:05")
}

func profileTarget(p config.Profile) string {
	switch {
	case p.Bucket != "":
		return p.Bucket
	case p.NameNode != "":
		return p.NameNode
	case p.RootPath != "":
		return p.RootPath
	default:
		return "-"
	}
}

func transferVerb(d storify.TransferDirection) string {
	switch d {
	case storify.DirectionUpload:
		return "Uploaded"
	case storify.DirectionDownload:
		return "Downloaded"
	default:
		return "Copied"
	}
}

func taskError(t *storify.TransferTask) error {
	if t.Err != nil {
		return t.Err
	}
	return errors.New("transfer failed")
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
