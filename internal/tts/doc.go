// Package tts synthesizes speech clips by shelling out to an external
// text-to-speech binary.
package tts
