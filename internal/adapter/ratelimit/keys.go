// Package ratelimit decides whether a client may issue another request on a
// rate limited route. Redis backs a limit shared by every instance; the
// in-process limiter serves single instance deployments.
package ratelimit

import "strings"

const rateKeyPrefix = "rate"

// KeyBuilder namespaces the Redis keys of one deployment.
type KeyBuilder struct {
	namespace string
}

func NewKeyBuilder(namespace string) *KeyBuilder {
	return &KeyBuilder{namespace: namespace}
}

// Build joins parts under the rate prefix, e.g. "ns:rate:redirect:10.0.0.1:28711".
func (k *KeyBuilder) Build(parts ...string) string {
	all := make([]string, 0, len(parts)+2)
	if k.namespace != "" {
		all = append(all, k.namespace)
	}
	all = append(all, rateKeyPrefix)
	all = append(all, parts...)

	return strings.Join(all, ":")
}
