// Command hdvapourize converts DV and HDV recordings into upscaled ProRes
// masters by driving ffmpeg and a VapourSynth script for each input file.
//
// Subcommands:
//
//	run        convert a file or a directory of files
//	check      verify tools, the processing script and working directories
//	config     write or validate the configuration file
//	history    list past runs or show one run in detail
package main
