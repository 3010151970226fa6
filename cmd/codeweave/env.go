package main

import (
	"codeweave/internal/config"
	"codeweave/internal/inject"
	"codeweave/internal/pass"
	"codeweave/internal/synth"
	"codeweave/internal/trace"
	"codeweave/internal/version"
)

// newEnv builds the pass environment described by c.
func newEnv(c *config.Config, tracer trace.Tracer) (pass.Env, error) {
	handles, err := pass.ParseHandlePolicy(c.CodeLib.Handles)
	if err != nil {
		return pass.Env{}, err
	}
	reg, err := inject.FromConfig(c.Injections)
	if err != nil {
		return pass.Env{}, err
	}
	return pass.Env{
		Globals:         pass.NewGlobals(),
		Blacklist:       c.Filter(),
		CodeLib:         synth.CodeLib{Class: c.CodeLib.Class, Instance: c.CodeLib.Instance},
		CodeLibLocation: c.CodeLib.Location,
		Handles:         handles,
		Registry:        reg,
		Tracer:          tracer,
		Version:         version.Version,
	}, nil
}
