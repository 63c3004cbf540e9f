package directory

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/matheus3301/replykit/internal/paths"
)

// abcddbName is the file name Contacts uses for every store, primary or linked.
const abcddbName = "AddressBook-v22.abcddb"

// Record is one person/phone pair read from a contact store. A person with
// several numbers yields several records.
type Record struct {
	First string
	Last  string
	Phone string
}

// DisplayName joins the present name parts with a single space.
func (r Record) DisplayName() string {
	var parts []string
	for _, p := range []string{r.First, r.Last} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// Source is a contact store the cache can scan.
type Source interface {
	Name() string
	Records(ctx context.Context) ([]Record, error)
}

// AddressBook reads a macOS Contacts database read-only.
type AddressBook struct {
	path string
}

// NewAddressBook returns a source for the database at path. Nothing is
// opened until Records is called.
func NewAddressBook(path string) *AddressBook {
	return &AddressBook{path: path}
}

func (a *AddressBook) Name() string { return a.path }

const recordsQuery = `
	SELECT COALESCE(r.ZFIRSTNAME, ''), COALESCE(r.ZLASTNAME, ''), p.ZFULLNUMBER
	FROM ZABCDRECORD r
	JOIN ZABCDPHONENUMBER p ON p.ZOWNER = r.Z_PK
	WHERE p.ZFULLNUMBER IS NOT NULL
	  AND (r.ZFIRSTNAME IS NOT NULL OR r.ZLASTNAME IS NOT NULL)`

// Records returns every record that has a name part and a phone number.
func (a *AddressBook) Records(ctx context.Context) ([]Record, error) {
	if _, err := os.Stat(a.path); err != nil {
		return nil, fmt.Errorf("stat contacts db: %w", err)
	}
	db, err := sql.Open("sqlite", paths.SQLiteURI(a.path, "mode=ro"))
	if err != nil {
		return nil, fmt.Errorf("open contacts db: %w", err)
	}
	defer func() { _ = db.Close() }()

	rows, err := db.QueryContext(ctx, recordsQuery)
	if err != nil {
		return nil, fmt.Errorf("query contacts db: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.First, &r.Last, &r.Phone); err != nil {
			return nil, fmt.Errorf("scan contact: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Discover lists the primary store under dir followed by every linked
// account store under dir/Sources, in lexical order.
func Discover(dir string) []Source {
	sources := []Source{NewAddressBook(filepath.Join(dir, abcddbName))}

	linked, _ := filepath.Glob(filepath.Join(dir, "Sources", "*", abcddbName))
	sort.Strings(linked)
	for _, p := range linked {
		sources = append(sources, NewAddressBook(p))
	}
	return sources
}
