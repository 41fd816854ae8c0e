// SPDX-License-Identifier: MPL-2.0

// Package loaders turns source entries into content items.
//
// A Loader claims a set of file extensions and, for one entry, returns a lazy
// sequence of content.Result values. Loaders never let an error escape
// unconverted: decode failures, missing inner files and unknown extensions
// become failure results scoped to the entry, and Safe converts panics the
// same way.
//
// Built-in loaders:
//
//	texture  .png .jpg .jpeg .bmp .tif .tiff .webp  RGBA texture
//	shader   .vert .frag .wgsl                      one shader stage
//	program  .prog                                  linked shader program
//	font     .font                                  distance-field font package
//	script   .lua                                   verbatim script text
package loaders
