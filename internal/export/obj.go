package export

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/san-kum/deform/internal/dynamo"
)

// WriteOBJ writes one frame as a Wavefront OBJ: a "v x y 0" line per
// vertex and a 1-based "f a b c" line per triangle.
func WriteOBJ(w io.Writer, frame dynamo.Frame, indices []int) error {
	if len(frame.Vertices)%2 != 0 {
		return fmt.Errorf("obj: %d coordinates: %w", len(frame.Vertices), dynamo.ErrDimensionMismatch)
	}
	if len(indices)%3 != 0 {
		return fmt.Errorf("obj: %d indices: %w", len(indices), dynamo.ErrDimensionMismatch)
	}

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "# frame %d\n", frame.FrameNo)
	for i := 0; i < len(frame.Vertices); i += 2 {
		fmt.Fprintf(bw, "v %g %g 0\n", frame.Vertices[i], frame.Vertices[i+1])
	}
	for i := 0; i < len(indices); i += 3 {
		fmt.Fprintf(bw, "f %d %d %d\n", indices[i]+1, indices[i+1]+1, indices[i+2]+1)
	}
	return bw.Flush()
}

func SaveOBJ(path string, frame dynamo.Frame, indices []int) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteOBJ(file, frame, indices); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
