package main

import (
	"path/filepath"

	"github.com/google/uuid"
)

// sessionPaths names the on-disk files one ctxkeepd run operates against,
// all rooted under projectDir/.ctxkeep. Unlike the dense, monotone IDs in
// pkg/ids, the run ID here only needs to be unique enough to tag a log
// line or metrics label across restarts, so a UUID is the right tool.
type sessionPaths struct {
	runID       string
	projectDir  string
	historyFile string
	streamDB    string
	toolDB      string
}

func newSessionPaths(projectDir string) sessionPaths {
	root := filepath.Join(projectDir, ".ctxkeep")
	return sessionPaths{
		runID:       uuid.NewString(),
		projectDir:  projectDir,
		historyFile: filepath.Join(root, "history.json"),
		streamDB:    filepath.Join(root, "stream.db"),
		toolDB:      filepath.Join(root, "tool.db"),
	}
}

func (s sessionPaths) dir() string {
	return filepath.Dir(s.historyFile)
}
