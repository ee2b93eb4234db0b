package config

// DefaultRecursionLimit bounds obligation depth before the solver reports overflow.
const DefaultRecursionLimit = 128

// DefaultSimilarImplLimit is how many near-miss impls an unimplemented-trait
// error lists before collapsing the rest into "and N others".
const DefaultSimilarImplLimit = 4

// ConfigFileNames are probed, in order, by FindConfig.
var ConfigFileNames = []string{"traitsolver.yaml", "traitsolver.yml"}

// UnitFileExt is the extension of serialized compilation units.
const UnitFileExt = ".unit.yaml"

// MetadataFormat is the version of the crate metadata layout written by export.
const MetadataFormat = "1.2.0"

// MetadataFormatConstraint selects the metadata layouts this build can read.
const MetadataFormatConstraint = ">= 1.0.0, < 2.0.0"

// IsTestMode indicates if the program is running in test mode.
// Tests set it so sessions get the nil id and log output stays stable.
var IsTestMode = false

// Lang item trait names
const (
	SizedTraitName  = "Sized"
	CopyTraitName   = "Copy"
	DropTraitName   = "Drop"
	FnOnceTraitName = "FnOnce"
	FnMutTraitName  = "FnMut"
	FnTraitName     = "Fn"
)

// Lang item member names
const (
	OutputItemName = "Output"
	DropMethodName = "drop"
	SelfParamName  = "Self"
)

// Color modes for diagnostic output
const (
	ColorAuto   = "auto"
	ColorAlways = "always"
	ColorNever  = "never"
)
