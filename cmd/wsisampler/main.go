// Package main provides the entry point for the wsisampler CLI.
//
// wsisampler extracts class-balanced training patches from multi-resolution
// microscopy images and records them in one patch frame per slide.
//
// Usage:
//
//	wsisampler sample --magnification 10 --patch-size 256 slide.tif
//	wsisampler mask slides/*.tif
//	wsisampler visualize --annotation-dir annotations slide.tif
//
// See --help for all available options.
package main

func main() {
	Execute()
}
