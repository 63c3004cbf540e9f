// Package paths resolves the default on-disk locations the daemon reads and
// writes. Everything the daemon owns lives under BaseDir.
package paths

import (
	"net/url"
	"os"
	"path/filepath"
)

// BaseDir returns ~/.replykit.
func BaseDir() string {
	return filepath.Join(home(), ".replykit")
}

// ConfigPath returns the config file path.
func ConfigPath() string {
	return filepath.Join(BaseDir(), "config.toml")
}

// ContextDBPath returns the app-owned context database path.
func ContextDBPath() string {
	return filepath.Join(BaseDir(), "context.db")
}

// SocketPath returns the daemon's Unix domain socket path.
func SocketPath() string {
	return filepath.Join(BaseDir(), "daemon.sock")
}

// LogDir returns the log directory.
func LogDir() string {
	return filepath.Join(BaseDir(), "logs")
}

// LogPath returns the daemon log file path.
func LogPath() string {
	return filepath.Join(LogDir(), "replykitd.log")
}

// ChatDBPath returns the default location of the Messages history database.
// Reading it requires Full Disk Access for the hosting process.
func ChatDBPath() string {
	return filepath.Join(home(), "Library", "Messages", "chat.db")
}

// AddressBookDir returns the default Contacts database directory. The primary
// database sits directly inside it; linked accounts live under Sources/.
func AddressBookDir() string {
	return filepath.Join(home(), "Library", "Application Support", "AddressBook")
}

// EnsureDir creates the directory tree the daemon writes into.
func EnsureDir(dirs ...string) error {
	if len(dirs) == 0 {
		dirs = []string{BaseDir(), LogDir()}
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0700); err != nil {
			return err
		}
	}
	return nil
}

// SQLiteURI builds a file: URI for path with the given raw query. The
// path is percent-escaped so '?', '#' and '%' in directory names stay part
// of the path.
func SQLiteURI(path, rawQuery string) string {
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(path), RawQuery: rawQuery}
	return u.String()
}

func home() string {
	h, _ := os.UserHomeDir()
	return h
}
