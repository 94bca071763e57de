package history

import "sort"

// ownerCache maps token wallet addresses to owner names for the session.
// Entries are never evicted. An address resolved to "" stays a key so it is
// not requested again; it is displayed as the raw address.
type ownerCache struct {
	names map[string]string
}

func newOwnerCache() *ownerCache {
	return &ownerCache{names: make(map[string]string)}
}

// Name returns the resolved owner name of address
func (c *ownerCache) Name(address string) (string, bool) {
	name, ok := c.names[address]
	return name, ok && name != ""
}

// Known reports whether address was already resolved
func (c *ownerCache) Known(address string) bool {
	_, ok := c.names[address]
	return ok
}

// unresolved returns the sorted addresses that are not cache keys yet
func (c *ownerCache) unresolved(addresses map[string]struct{}) []string {
	var misses []string
	for address := range addresses {
		if address == "" || c.Known(address) {
			continue
		}
		misses = append(misses, address)
	}
	sort.Strings(misses)
	return misses
}

// merge adds resolved names and returns how many entries changed
func (c *ownerCache) merge(resolved map[string]string) int {
	changed := 0
	for address, name := range resolved {
		current, ok := c.names[address]
		if ok && (current != "" || name == "") {
			continue
		}
		c.names[address] = name
		changed++
	}
	return changed
}

func (c *ownerCache) Len() int {
	return len(c.names)
}
