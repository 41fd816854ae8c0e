// SPDX-License-Identifier: MPL-2.0

// Package config loads contentpipe settings with Viper, using CUE as the
// file format.
//
// Values are layered: built-in defaults, then contentpipe.cue (validated
// against the embedded #Config schema), then CONTENTPIPE_* environment
// variables. A .env file in the base directory is loaded into the
// environment first, without overriding variables that are already set.
package config
