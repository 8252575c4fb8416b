package service

import (
	"github.com/catalyst/userkey/internal/config"
	"github.com/catalyst/userkey/internal/core"
)

// ParameterSpec describes the payload fields the login-URL endpoint
// accepts under the current configuration.
type ParameterSpec struct {
	Required []string `json:"required"`
	Optional []string `json:"optional"`
}

// RequestParameters derives the parameter declaration from the active
// configuration. An unrecognized mapping field degrades to an empty
// declaration rather than an error; the config layer is responsible
// for rejecting bad values before they get here.
func RequestParameters(cfg *config.Config) ParameterSpec {
	spec := ParameterSpec{Required: []string{}, Optional: []string{}}
	if !core.KnownMappingField(cfg.MappingField) {
		return spec
	}

	spec.Required = append(spec.Required, string(cfg.MappingField))
	if cfg.IPRestriction {
		spec.Required = append(spec.Required, "ip")
	} else {
		spec.Optional = append(spec.Optional, "ip")
	}

	if cfg.CreateUser || cfg.UpdateUser {
		spec.Optional = append(spec.Optional, "firstname", "lastname")
		for _, field := range []core.MappingField{core.MapByUsername, core.MapByEmail, core.MapByIDNumber} {
			if field != cfg.MappingField {
				spec.Optional = append(spec.Optional, string(field))
			}
		}
	}

	return spec
}
