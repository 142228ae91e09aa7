package common

// Version is the current jitlower version as a string.
const Version string = "0.3.0"

// ProfileFileName is the default name of the lowering profile.
const ProfileFileName string = "jitlower.toml"

// DefaultOutputPath is where the lowered module is written when neither the
// profile nor the command line says otherwise.
const DefaultOutputPath string = "out.ll"

// RelocFileExt is the extension appended to the output path to produce the
// path of the relocation list.
const RelocFileExt string = ".relocs"
