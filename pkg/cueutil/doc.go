// SPDX-License-Identifier: MPL-2.0

// Package cueutil validates documents against embedded CUE schemas and
// decodes them into Go values.
//
// Source manifests, shader-program descriptions and the pipeline config all
// follow the same flow: compile the embedded schema, compile the user
// document (CUE or JSON, which is a CUE subset), unify it with a schema
// definition, validate, then decode.
//
//	//go:embed program_schema.cue
//	var programSchema []byte
//
//	res, err := cueutil.ParseAndDecode[ProgramDoc](
//	    programSchema,
//	    data,
//	    "#Program",
//	    cueutil.WithFilename("shaders/basic.prog"),
//	)
package cueutil
