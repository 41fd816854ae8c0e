// SPDX-License-Identifier: MPL-2.0

// Package content defines the pipeline's data model: sources, entries, typed
// items and the results loaders emit.
//
// An Item's payload is a closed set of variants (Texture, Shader, Program,
// Font, Script). Items whose payload needs GPU resources carry a GL record
// and move through the lifecycle
//
//	Uninitialized -> Initialized -> Uninitialized -> ... -> Destroyed
//
// with every transition executed as a job on the GPU context thread.
package content
