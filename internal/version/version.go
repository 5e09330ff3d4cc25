package version

// These variables are overridden at build time using -ldflags.
var (
	Version = "dev"
	Commit  = "none"
	Date    = ""
	Dirty   = "false"
)

// Info is the build metadata reported by the server.
type Info struct {
	Service string `json:"service"`
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date,omitempty"`
	Dirty   bool   `json:"dirty"`
}

// Get returns the metadata of the running binary.
func Get() Info {
	return Info{
		Service: "battle-server",
		Version: Version,
		Commit:  Commit,
		Date:    Date,
		Dirty:   Dirty == "true",
	}
}
