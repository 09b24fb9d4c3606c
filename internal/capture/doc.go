// Package capture records short audio clips for a song draft and plays them back.
//
// # Capture Modes
//
// The [Engine] runs one session at a time:
//
//  1. [Engine.StartMicCapture] : microphone only, clips named "Áudio N"
//  2. [Engine.StartMixedCapture] : microphone mixed with system or tab audio through two gain stages,
//     clips named "Prévia N" or "{base} (com base)"
//
// A session moves Idle → Acquiring* → Recording* → Idle. [Engine.Stop] turns the recorded chunks into a
// clip whose audio sits behind a transient "blob:" URI until the host stores it and calls
// [Engine.MarkPersisted].
//
// # Platform
//
// Devices, mixing, encoding and playback are reached through [Capabilities], [Blobs] and [Players] so the
// engine can run against real hardware, the software backends in internal/softcap and internal/playback,
// or test doubles.
//
// # Errors
//
// Every failure is an [*Error] classified by one of the package sentinels ([ErrPermissionDenied],
// [ErrAudioNotShared], [ErrPlayback], ...). Errors are returned and also reported to Options.OnError.
package capture
