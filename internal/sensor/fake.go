package sensor

// Sample is a single scripted reading.
type Sample struct {
	Celsius float64
	Err     error
}

// FakeReader is a test double that returns scripted readings.
type FakeReader struct {
	// Samples contains scripted readings to return.
	// Each call to ReadCelsius() consumes the next sample.
	Samples []Sample

	// index tracks current position in Samples
	index int

	// Reads counts calls to ReadCelsius.
	Reads int
}

// NewFakeReader creates a FakeReader with the given samples.
func NewFakeReader(samples ...Sample) *FakeReader {
	return &FakeReader{Samples: samples}
}

// ReadCelsius returns the next scripted sample.
// If samples are exhausted, returns the last sample repeatedly.
func (f *FakeReader) ReadCelsius() (float64, error) {
	f.Reads++
	if len(f.Samples) == 0 {
		return 0, ErrNoSamples
	}

	sample := f.Samples[f.index]
	if f.index < len(f.Samples)-1 {
		f.index++
	}
	return sample.Celsius, sample.Err
}
