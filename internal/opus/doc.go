// Package opus handles encoding, decoding, and streaming of Opus audio frames
// for Discord voice playback.
//
// Frames travel in a minimal binary format: concatenated length-prefixed frames
// ([uint16 LE length][opus bytes]). No headers, no metadata.
//
// Encode and EncodeFile transcode any audio to Opus via FFmpeg and produce
// length-prefixed frames. FrameReader reads them back. StreamToVoice sends
// frames to a voice connection until the track ends or is stopped.
package opus
