package jsbind

import "github.com/rs/zerolog"

// consolePrinter routes script console output to the logger.
type consolePrinter struct {
	log zerolog.Logger
}

func (p consolePrinter) Log(s string)   { p.log.Info().Msg(s) }
func (p consolePrinter) Warn(s string)  { p.log.Warn().Msg(s) }
func (p consolePrinter) Error(s string) { p.log.Error().Msg(s) }
