// Package softcap is a software capture backend for the capture engine.
//
// Audio files stand in for devices: the microphone and the shared system audio each read from a file
// (WAV, MP3, FLAC or raw s16le PCM) or from silence. The [Mixer] sums both through per-source gains and the
// [Recorder] paces reads in real time and emits WAV.
package softcap
