package domain

import "strconv"

// DisplayOptions select which entity kinds the presentation layer draws.
// They are part of the topology fingerprint.
type DisplayOptions struct {
	Apps     bool `json:"apps" yaml:"apps"`
	Networks bool `json:"networks" yaml:"networks"`
}

// DefaultDisplayOptions shows everything
func DefaultDisplayOptions() DisplayOptions {
	return DisplayOptions{Apps: true, Networks: true}
}

// Token is the canonical string used in fingerprints
func (o DisplayOptions) Token() string {
	return "apps=" + strconv.FormatBool(o.Apps) + ",networks=" + strconv.FormatBool(o.Networks)
}
