// Package tenant discovers establishments on disk. Each sub-directory of the
// establishments directory is one tenant holding a menu and a tenant.yaml.
package tenant

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pedroavv1914/zappi-chatbot/internal/config"
	"github.com/pedroavv1914/zappi-chatbot/internal/menu"
)

// ErrUnknown is returned by Lookup for a name with no directory.
var ErrUnknown = errors.New("tenant: unknown establishment")

// Tenant is one discovered establishment. Err is set when its catalog or
// transport config failed to load; Catalog is still populated when only the
// transport config was at fault.
type Tenant struct {
	Name        string
	Dir         string
	DisplayName string
	Catalog     *menu.Catalog
	Transport   config.TenantConfig
	Err         error
}

// Discover lists every tenant under dir, creating dir when it does not exist.
// Per-tenant load failures are carried in Tenant.Err so one broken
// establishment never hides the others.
func Discover(dir string) ([]Tenant, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("tenant: create %s: %w", dir, err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("tenant: read %s: %w", dir, err)
	}

	var tenants []Tenant
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		tenants = append(tenants, load(dir, e.Name()))
	}
	sort.Slice(tenants, func(i, j int) bool { return tenants[i].Name < tenants[j].Name })
	return tenants, nil
}

// Lookup loads a single tenant by directory name.
func Lookup(dir, name string) (Tenant, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return Tenant{}, fmt.Errorf("%w: %q", ErrUnknown, name)
	}
	info, err := os.Stat(filepath.Join(dir, name))
	if err != nil || !info.IsDir() {
		return Tenant{}, fmt.Errorf("%w: %q", ErrUnknown, name)
	}
	return load(dir, name), nil
}

func load(dir, name string) Tenant {
	t := Tenant{
		Name:        name,
		Dir:         filepath.Join(dir, name),
		DisplayName: DisplayName(name),
	}

	cat, err := menu.Load(t.Dir)
	if err != nil {
		t.Err = err
		return t
	}
	t.Catalog = cat

	tc, err := config.LoadTenant(filepath.Join(t.Dir, config.TenantFile))
	if err != nil {
		t.Err = err
		return t
	}
	t.Transport = *tc
	if tc.DisplayName != "" {
		t.DisplayName = tc.DisplayName
	}
	return t
}

// DisplayName derives a human name from a directory name: "pizzaria_bella"
// becomes "pizzaria bella".
func DisplayName(name string) string {
	return strings.ReplaceAll(name, "_", " ")
}
