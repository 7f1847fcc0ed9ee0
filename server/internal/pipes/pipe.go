package pipes

import "io"

type Pipe interface {
	Name() string
	Connect(r io.Reader) (io.Reader, error)
}

// Chain connects every pipe to the output of the previous one.
func Chain(r io.Reader, pipes ...Pipe) (io.Reader, error) {
	var err error
	for _, p := range pipes {
		r, err = p.Connect(r)
		if err != nil {
			return nil, err
		}
	}
	return r, nil
}
