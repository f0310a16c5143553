// Package testing provides SSH mocks for exercising code that talks
// to cluster machines. The mock client parses the handful of shell
// commands the tools actually run and executes them against an
// in-memory filesystem standing in for the remote machine.
package testing

import (
	"errors"
	"path/filepath"
	"strings"
	"sync"
)

// node is one entry in the simulated filesystem, either a directory or
// a file with content.
type node struct {
	dir  bool
	data []byte
}

// MockFS is the in-memory filesystem of one simulated machine. Paths
// are stored as cleaned strings; relative paths like ".ssh" live
// alongside absolute ones, matching how commands address a home
// directory over SSH.
type MockFS struct {
	mu    sync.RWMutex
	nodes map[string]node
}

// NewMockFS creates a new empty mock filesystem.
func NewMockFS() *MockFS {
	return &MockFS{nodes: make(map[string]node)}
}

// ancestry lists path and every intermediate directory above it, in
// creation order. "/a/b/c" yields /a, /a/b, /a/b/c; ".ssh" yields
// just .ssh.
func ancestry(path string) []string {
	parts := strings.Split(path, "/")
	chain := make([]string, 0, len(parts))
	rooted := strings.HasPrefix(path, "/")

	current := ""
	for _, part := range parts {
		if part == "" {
			continue
		}
		switch {
		case current == "" && rooted:
			current = "/" + part
		case current == "":
			current = part
		default:
			current += "/" + part
		}
		chain = append(chain, current)
	}
	return chain
}

// Mkdir creates a directory. Returns an error if the path already
// exists, matching plain mkdir.
func (fs *MockFS) Mkdir(path string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	path = filepath.Clean(path)
	if n, ok := fs.nodes[path]; ok {
		if n.dir {
			return errors.New("directory already exists")
		}
		return errors.New("file exists at path")
	}
	fs.nodes[path] = node{dir: true}
	return nil
}

// MkdirAll creates a directory and all parents, like mkdir -p.
func (fs *MockFS) MkdirAll(path string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	for _, p := range ancestry(filepath.Clean(path)) {
		if _, ok := fs.nodes[p]; !ok {
			fs.nodes[p] = node{dir: true}
		}
	}
	return nil
}

// WriteFile writes content to a file, creating the parent directory.
func (fs *MockFS) WriteFile(path string, content []byte) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	path = filepath.Clean(path)
	if dir := filepath.Dir(path); dir != "." && dir != "/" {
		if _, ok := fs.nodes[dir]; !ok {
			fs.nodes[dir] = node{dir: true}
		}
	}
	fs.nodes[path] = node{data: content}
	return nil
}

// ReadFile reads a file's content. Missing paths and directories are
// an error.
func (fs *MockFS) ReadFile(path string) ([]byte, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	n, ok := fs.nodes[filepath.Clean(path)]
	if !ok || n.dir {
		return nil, errors.New("file not found")
	}
	return n.data, nil
}

// Remove deletes a path and everything under it, like rm -rf.
func (fs *MockFS) Remove(path string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	path = filepath.Clean(path)
	delete(fs.nodes, path)

	prefix := path + "/"
	for p := range fs.nodes {
		if strings.HasPrefix(p, prefix) {
			delete(fs.nodes, p)
		}
	}
	return nil
}

// Exists reports whether the path exists as a file or directory.
func (fs *MockFS) Exists(path string) bool {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	_, ok := fs.nodes[filepath.Clean(path)]
	return ok
}

// IsDir reports whether the path exists and is a directory.
func (fs *MockFS) IsDir(path string) bool {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	n, ok := fs.nodes[filepath.Clean(path)]
	return ok && n.dir
}

// IsFile reports whether the path exists and is a file.
func (fs *MockFS) IsFile(path string) bool {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	n, ok := fs.nodes[filepath.Clean(path)]
	return ok && !n.dir
}
