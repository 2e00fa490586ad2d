package port

// Image is one photographed instrument screen submitted for extraction.
type Image struct {
	Name        string
	ContentType string
	Data        []byte
}
