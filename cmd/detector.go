package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/andresmejia3/faceindex/internal/config"
	"github.com/andresmejia3/faceindex/internal/faceindex"
	"github.com/andresmejia3/faceindex/internal/utils"
	"github.com/andresmejia3/faceindex/internal/worker"
	"github.com/spf13/cobra"
)

// detectorFlags are the per-command overrides for the detector section of the config.
type detectorFlags struct {
	Backend string
	Script  string
	URL     string
	Timeout time.Duration
}

func addDetectorFlags(cmd *cobra.Command, f *detectorFlags) {
	cmd.Flags().StringVar(&f.Backend, "detector", config.BackendPython, "Face detector backend: python (runs --worker-script, needs face_recognition installed) or http (--embedding-url)")
	cmd.Flags().StringVar(&f.Script, "worker-script", worker.DefaultScript, "Python worker entry point (see python/requirements.txt)")
	cmd.Flags().StringVar(&f.URL, "embedding-url", "http://localhost:8000", "Face embedding server URL (http backend)")
	cmd.Flags().DurationVar(&f.Timeout, "worker-timeout", worker.DefaultTimeout, "Per-image detector timeout")
}

// resolve overlays explicitly set flags on the configured values.
func (f *detectorFlags) resolve(cmd *cobra.Command, base config.DetectorConfig) config.DetectorConfig {
	out := base
	if cmd.Flags().Changed("detector") {
		out.Backend = f.Backend
	}
	if cmd.Flags().Changed("worker-script") {
		out.Script = f.Script
	}
	if cmd.Flags().Changed("embedding-url") {
		out.URL = f.URL
	}
	if cmd.Flags().Changed("worker-timeout") {
		out.Timeout = f.Timeout
	}
	return out
}

// detectorHandle couples a detector with its cleanup and, for the Python
// backend, the process whose stderr holds crash logs.
type detectorHandle struct {
	faceindex.Detector
	Proc  *utils.SafeCommand
	close func() error
}

func (h *detectorHandle) Close() error { return h.close() }

func startDetector(ctx context.Context, dc config.DetectorConfig) (*detectorHandle, error) {
	switch dc.Backend {
	case config.BackendHTTP:
		fmt.Fprintf(os.Stderr, "🌐 Using face embedding server at %s\n", dc.URL)
		d := worker.NewHTTPDetector(dc.URL, dc.Timeout)
		return &detectorHandle{Detector: d, close: d.Close}, nil
	case config.BackendPython:
		fmt.Fprintln(os.Stderr, "🚀 Starting face detector...")
		// We use ID 0 for the single build worker
		w, err := worker.NewPythonWorker(ctx, 0, dc.Script)
		if err != nil {
			return nil, err
		}
		w.Timeout = dc.Timeout
		return &detectorHandle{Detector: w, Proc: w.Cmd, close: w.Close}, nil
	default:
		return nil, fmt.Errorf("unknown detector backend %q", dc.Backend)
	}
}
