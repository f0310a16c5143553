package lock

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Info contains metadata about who holds a lock.
type Info struct {
	User     string    `json:"user"`
	Hostname string    `json:"hostname"`
	Started  time.Time `json:"started"`
	PID      int       `json:"pid"`
	Command  string    `json:"command,omitempty"`
}

// NewInfo describes the current process as a lock holder.
func NewInfo(command string) *Info {
	info := &Info{
		User:     os.Getenv("USER"),
		Hostname: "unknown",
		Started:  time.Now(),
		PID:      os.Getpid(),
		Command:  command,
	}
	if hostname, err := os.Hostname(); err == nil {
		info.Hostname = hostname
	}
	if info.User == "" {
		info.User = "unknown"
	}
	return info
}

// Age returns how long ago the lock was acquired.
func (i *Info) Age() time.Duration {
	return time.Since(i.Started)
}

// Marshal serializes the Info to JSON.
func (i *Info) Marshal() ([]byte, error) {
	return json.Marshal(i)
}

// ParseInfo deserializes JSON data into an Info.
func ParseInfo(data []byte) (*Info, error) {
	var info Info
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// String returns a human-readable description of the holder.
func (i *Info) String() string {
	s := fmt.Sprintf("%s@%s (pid %d)", i.User, i.Hostname, i.PID)
	if i.Command != "" {
		s += fmt.Sprintf(" running '%s'", i.Command)
	}
	return s
}
