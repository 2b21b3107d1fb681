//go:build windows || js || wasip1

package printer

func platformSink(string) Sink {
	return UnsupportedSink{}
}
