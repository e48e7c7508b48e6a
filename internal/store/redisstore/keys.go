package redisstore

import "strconv"

const (
	// KeyPrefixService is the prefix for service records, keyed by ID
	KeyPrefixService = "parley:service:"
	// KeyPrefixSubdomain is the prefix for the subdomain -> ID index
	KeyPrefixSubdomain = "parley:subdomain:"
	// KeyPrefixAffiliation is the prefix for per-user room affiliations
	KeyPrefixAffiliation = "parley:affiliation:"
	// KeyAllServices is the key for the set of all service IDs
	KeyAllServices = "parley:services:all"
	// KeyNextServiceID is the key of the ID allocation counter
	KeyNextServiceID = "parley:services:next_id"
)

// ServiceKey returns the Redis key for a service record by ID
func ServiceKey(id int64) string {
	return KeyPrefixService + strconv.FormatInt(id, 10)
}

// SubdomainKey returns the Redis key of the subdomain -> ID index entry
func SubdomainKey(subdomain string) string {
	return KeyPrefixSubdomain + subdomain
}

// AffiliationKey returns the Redis key of a user's affiliation hash
func AffiliationKey(userAddress string) string {
	return KeyPrefixAffiliation + userAddress
}
