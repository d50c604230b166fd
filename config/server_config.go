package config

import (
	"encoding/xml"
	"fmt"
	"os"
)

// ServerConfig is the spec §6 deployment document: `<run_time>`,
// `<servers><group>`, `<log>`, and `<author key="...">`, loaded once at
// process startup before any driver exists. The spec names this piece
// explicitly out of scope/trivial, so it is the one place this module
// stands on the standard library (encoding/xml) instead of the teacher's
// viper-backed ConfigManager — every other config concern still goes
// through ConfigManager.
type ServerConfig struct {
	XMLName xml.Name        `xml:"pantyhose"`
	RunTime RunTimeConfig   `xml:"run_time"`
	Servers ServersConfig   `xml:"servers"`
	Log     LogTargetConfig `xml:"log"`
	Author  AuthorConfig    `xml:"author"`
}

// RunTimeConfig is `<run_time worker_threads=N/>`; the core always runs
// a single cooperative driver (spec §4/§5), so worker_threads is parsed
// but neither validated nor used.
type RunTimeConfig struct {
	WorkerThreads int `xml:"worker_threads,attr"`
}

// ServersConfig is `<servers><group name="type">...</group>...</servers>`.
type ServersConfig struct {
	Groups []ServerGroup `xml:"group"`
}

// ServerGroup is one `<group name="type">` block: every server instance
// of a single server_type.
type ServerGroup struct {
	Name    string         `xml:"name,attr"`
	Servers []ServerEntry  `xml:"server"`
}

// ServerEntry is one `<server id=N back_tcp_port=P front_tcp_port=Q
// front_ws_port=R/>` element. A zero port means that listener is not
// brought up for this instance (spec §4.2: a node exposes any subset of
// the three listener kinds).
type ServerEntry struct {
	ID            uint32 `xml:"id,attr"`
	BackTCPPort   int    `xml:"back_tcp_port,attr"`
	FrontTCPPort  int    `xml:"front_tcp_port,attr"`
	FrontWSPort   int    `xml:"front_ws_port,attr"`
}

// LogTargetConfig is `<log debug="..." info="..." net="..." warn="..."
// err="..."/>`, each attribute either "terminal" or "file".
type LogTargetConfig struct {
	Debug string `xml:"debug,attr"`
	Info  string `xml:"info,attr"`
	Net   string `xml:"net,attr"`
	Warn  string `xml:"warn,attr"`
	Err   string `xml:"err,attr"`
}

// AuthorConfig is `<author key="..."/>`: the cluster-wide shared secret
// checked against NodeRegisterBRequest.ClientToken (spec §6, §9).
type AuthorConfig struct {
	Key string `xml:"key,attr"`
}

// LoadServerConfig reads and parses path into a ServerConfig. Unlike
// config.ConfigManager, this is a one-shot load with no hot-reload: the
// spec's startup sequence reads it exactly once before any server object
// exists (spec §6 "Config path defaults to bin/config.xml").
func LoadServerConfig(path string) (*ServerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("server config: read %s: %w", path, err)
	}
	var cfg ServerConfig
	if err := xml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("server config: parse %s: %w", path, err)
	}
	return &cfg, nil
}

// FindServer locates the ServerGroup and ServerEntry for serverID within
// the group named serverType. Returns false if no such entry exists.
func (c *ServerConfig) FindServer(serverType string, serverID uint32) (ServerGroup, ServerEntry, bool) {
	for _, g := range c.Servers.Groups {
		if g.Name != serverType {
			continue
		}
		for _, s := range g.Servers {
			if s.ID == serverID {
				return g, s, true
			}
		}
	}
	return ServerGroup{}, ServerEntry{}, false
}

// FindServerByID searches every group for serverID, since the command
// line only names the id (spec §6 "pantyhose <config_path> <server_id>")
// and the owning group's name is this process's server_type.
func (c *ServerConfig) FindServerByID(serverID uint32) (ServerGroup, ServerEntry, bool) {
	for _, g := range c.Servers.Groups {
		for _, s := range g.Servers {
			if s.ID == serverID {
				return g, s, true
			}
		}
	}
	return ServerGroup{}, ServerEntry{}, false
}

// FindGroup returns the group named serverType, if the document has one.
func (c *ServerConfig) FindGroup(serverType string) (ServerGroup, bool) {
	for _, g := range c.Servers.Groups {
		if g.Name == serverType {
			return g, true
		}
	}
	return ServerGroup{}, false
}
