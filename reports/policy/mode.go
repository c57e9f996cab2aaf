// Package policy decides, per request, whether the real generation engine
// runs or the cheap substitute path does. The decision is a pure function of
// an explicit parameter struct; configuration is resolved once at the
// service boundary and passed in, never read mid-logic.
package policy

import (
	"os"
	"strconv"
)

// Globals are the operational flags, resolved once in the composition root.
type Globals struct {
	// ForceSubstitute is the kill switch: every request takes the
	// substitute path while it is set.
	ForceSubstitute bool
	// ForceReal routes requests to the real path unless a higher-priority
	// rule says otherwise.
	ForceReal bool
	// AllowRealForSynthetic permits synthetic/test requests to exercise
	// the real engine.
	AllowRealForSynthetic bool
}

// Params is everything the mode decision may depend on.
type Params struct {
	Globals Globals

	// PrivilegedActor marks allowlisted actors whose output must always be
	// authentic, even in test contexts.
	PrivilegedActor bool
	// ForceReal is the per-request flag.
	ForceReal bool
	// Synthetic marks test/demo requests.
	Synthetic bool
}

// Decision says which path executes. Exactly one of the two fields is true.
type Decision struct {
	UseRealPath       bool
	UseSubstitutePath bool
}

func realPath() Decision       { return Decision{UseRealPath: true} }
func substitutePath() Decision { return Decision{UseSubstitutePath: true} }

// SelectExecutionMode evaluates the rules in strict precedence order. The
// ordering is load-bearing; in particular, privileged actors beat the
// synthetic marker so that allowlisted real users can be exercised
// end-to-end in shared environments.
func SelectExecutionMode(p Params) Decision {
	// 1. Global kill switch.
	if p.Globals.ForceSubstitute {
		return substitutePath()
	}
	// 2. Privileged actors always get authentic output.
	if p.PrivilegedActor {
		return realPath()
	}
	// 3. Per-request override.
	if p.ForceReal {
		return realPath()
	}
	// 4. Synthetic requests stay cheap unless explicitly allowed through.
	if p.Synthetic && !p.Globals.AllowRealForSynthetic {
		return substitutePath()
	}
	// 5. Global force-real.
	if p.Globals.ForceReal {
		return realPath()
	}
	// 6. Default.
	return realPath()
}

// GlobalsFromEnv reads the operational flags from the environment. Called
// once from initService.
func GlobalsFromEnv() Globals {
	return Globals{
		ForceSubstitute:       envBool("REPORTS_FORCE_SUBSTITUTE"),
		ForceReal:             envBool("REPORTS_FORCE_REAL"),
		AllowRealForSynthetic: envBool("REPORTS_ALLOW_REAL_FOR_SYNTHETIC"),
	}
}

func envBool(name string) bool {
	v, err := strconv.ParseBool(os.Getenv(name))
	return err == nil && v
}
