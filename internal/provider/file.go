package provider

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const defaultOutputDir = "./mail_output"

var unsafePathChars = strings.NewReplacer("/", "_", `\`, "_", "@", "_at_", "..", "_")

// File drops every delivery into a per-recipient mailbox directory as an
// .eml file, so a developer can open what each subscriber would have read.
type File struct {
	outputDir string
}

// NewFile returns a File provider rooted at dir, or ./mail_output when dir
// is empty.
func NewFile(dir string) *File {
	if dir == "" {
		dir = defaultOutputDir
	}
	return &File{outputDir: dir}
}

func (f *File) GetName() string { return "file" }

// Send writes <dir>/<recipient>/<unix-nanos>_<id>.eml. The message is written
// to a temp file first and renamed, so readers never see a partial file.
func (f *File) Send(_ context.Context, msg *Message) (*DeliveryResult, error) {
	mailbox := filepath.Join(f.outputDir, unsafePathChars.Replace(strings.ToLower(msg.To)))
	if err := os.MkdirAll(mailbox, 0o750); err != nil {
		return nil, fmt.Errorf("file: create mailbox: %w", err)
	}

	now := time.Now()
	raw, err := buildMIME(msg, now)
	if err != nil {
		return nil, fmt.Errorf("file: build message: %w", err)
	}

	tmp, err := os.CreateTemp(mailbox, ".incoming-*")
	if err != nil {
		return nil, fmt.Errorf("file: create temp: %w", err)
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("file: write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("file: close temp: %w", err)
	}

	name := fmt.Sprintf("%d_%s.eml", now.UnixNano(), unsafePathChars.Replace(msg.ID))
	path := filepath.Join(mailbox, name)
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("file: publish %s: %w", path, err)
	}

	return &DeliveryResult{
		ProviderMessageID: "file-" + msg.ID,
		Status:            StatusSent,
		Timestamp:         now,
		Metadata:          map[string]string{"path": path, "mailbox": mailbox},
	}, nil
}

// HealthCheck verifies the output root can be created.
func (f *File) HealthCheck(context.Context) error {
	if err := os.MkdirAll(f.outputDir, 0o750); err != nil {
		return fmt.Errorf("file: output dir not writable: %w", err)
	}
	return nil
}
