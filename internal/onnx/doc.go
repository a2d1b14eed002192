// Package onnx models ONNX computation graphs and reads and writes the .onnx protobuf format.
//
// The codec is hand-written on top of protowire. It decodes the subset of onnx.proto that
// graph tooling needs (models, graphs, nodes, attributes, tensors and tensor types) and keeps
// every other field as raw bytes, so a model passes through Decode and Encode unchanged.
//
// Key components:
//   - ModelProto: model envelope with IR version, opset imports and metadata
//   - GraphProto: nodes in topological order, initializers, inputs, outputs, value info
//   - NodeProto: a single operator application; tensor names are the edges
//   - TensorProto: constant tensor; payloads are immutable and shared between clones
//   - Namer, SymbolTable: fresh-name generation and name-to-producer lookups for rewrites
//
// Example usage:
//
//	model, err := onnx.ReadFile("squeezenet.onnx")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("IR %d, opset %d\n", model.IRVersion, model.OpsetImport[0].Version)
//
//	sorted, err := onnx.SortTopologically(model.Graph)
package onnx
