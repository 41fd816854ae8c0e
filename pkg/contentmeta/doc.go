// SPDX-License-Identifier: MPL-2.0

// Package contentmeta parses and validates content source manifests.
//
// Every content source carries a manifest at its root, either meta.json or
// meta.toml, describing its identity and the names of the sources it
// depends on:
//
//	{
//	  "name": "mod_a",
//	  "version": "1.2.0",
//	  "title": "Mod A",
//	  "Dependencies": ["base"]
//	}
//
// Keys are matched case-insensitively and normalized to camelCase, then the
// document is validated against the embedded CUE schema.
package contentmeta
