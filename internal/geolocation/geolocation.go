package geolocation

import (
	"strings"

	"github.com/ip2location/ip2location-go/v9"
	"github.com/sirupsen/logrus"
)

// Resolver looks up pod locations for the dashboard. A missing or
// broken database degrades every lookup to "Unknown" rather than
// failing callers.
type Resolver struct {
	db *ip2location.DB
}

// Open loads the IP2Location database. The returned resolver is usable
// even when loading fails.
func Open(dbPath string) *Resolver {
	db, err := ip2location.OpenDB(dbPath)
	if err != nil {
		logrus.Warnf("Failed to load IP2Location DB from %s, locations will be Unknown: %v", dbPath, err)
		return &Resolver{}
	}
	logrus.Info("IP2Location DB loaded successfully")
	return &Resolver{db: db}
}

// Close releases the database.
func (r *Resolver) Close() {
	if r.db != nil {
		r.db.Close()
	}
}

// Lookup returns a "City, Region, Country" string for an address of
// the form ip or ip:port, or "Unknown".
func (r *Resolver) Lookup(address string) string {
	if r.db == nil || address == "" {
		return "Unknown"
	}

	ip := address
	if i := strings.IndexByte(address, ':'); i >= 0 {
		ip = address[:i]
	}

	results, err := r.db.Get_all(ip)
	if err != nil {
		return "Unknown"
	}

	var parts []string
	for _, p := range []string{results.City, results.Region, results.Country_long} {
		if p != "" && p != "-" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return "Unknown"
	}
	return strings.Join(parts, ", ")
}
