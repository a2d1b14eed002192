// Command onnxkit checks, merges, converts and inspects ONNX models.
package main

func main() {
	Execute()
}
