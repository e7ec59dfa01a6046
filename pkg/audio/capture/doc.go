// Package capture acquires microphone audio and delivers it as
// fixed-size float32 frames.
//
// Two FrameSource implementations cover the common deployments:
// StreamSource frames PCM from any io.Reader on the audio clock (the
// preferred path), and ExecSource falls back to an external recorder
// process when no direct feed exists. Echo cancellation, noise
// suppression and gain control are delegated to the capture backend;
// this package only frames what it is given.
//
// Bridge wraps a source with the session lifecycle: the source is held
// acquired between captures and released only on Destroy.
package capture
