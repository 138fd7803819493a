package domain

import (
	"slices"
	"strings"

	dErrors "crossledger/pkg/domain-errors"
	platformstrings "crossledger/pkg/platform/strings"
)

// EntityType classifies a registered participant.
type EntityType string

const (
	EntityFarmer       EntityType = "farmer"
	EntityPatient      EntityType = "patient"
	EntityBuyer        EntityType = "buyer"
	EntityFacility     EntityType = "facility"
	EntityProduct      EntityType = "product"
	EntityOrganization EntityType = "organization"
	EntityGovernment   EntityType = "government"
)

var entityTypes = []EntityType{
	EntityFarmer, EntityPatient, EntityBuyer, EntityFacility,
	EntityProduct, EntityOrganization, EntityGovernment,
}

// IsValid reports whether t is one of the known entity types.
func (t EntityType) IsValid() bool {
	return slices.Contains(entityTypes, t)
}

// ParseEntityType accepts any casing of a known type name.
func ParseEntityType(s string) (EntityType, error) {
	t := EntityType(strings.ToLower(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "unknown entity type %q", s)
	}
	return t, nil
}

// Module names an independently operated ledger module.
type Module string

const (
	ModuleRegistry       Module = "registry"
	ModuleCoordinator    Module = "coordinator"
	ModuleAgriculture    Module = "agriculture"
	ModuleHealthcare     Module = "healthcare"
	ModuleSustainability Module = "sustainability"
)

// ModuleSet is a sorted, de-duplicated set of module names.
type ModuleSet []Module

// NewModuleSet normalizes names (trim, lowercase), drops blanks and duplicates,
// and returns them sorted.
func NewModuleSet(names ...string) ModuleSet {
	normalized := platformstrings.DedupeTrimLower(names)
	set := make(ModuleSet, 0, len(normalized))
	for _, n := range normalized {
		set = append(set, Module(n))
	}
	slices.Sort(set)
	return set
}

// Contains reports whether m is in the set.
func (s ModuleSet) Contains(m Module) bool {
	_, found := slices.BinarySearch(s, m)
	return found
}

// Union returns a new set holding the members of both sets.
func (s ModuleSet) Union(other ModuleSet) ModuleSet {
	names := make([]string, 0, len(s)+len(other))
	for _, m := range s {
		names = append(names, string(m))
	}
	for _, m := range other {
		names = append(names, string(m))
	}
	return NewModuleSet(names...)
}

// Clone returns an independent copy.
func (s ModuleSet) Clone() ModuleSet {
	return slices.Clone(s)
}
