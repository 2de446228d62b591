// Package extension defines the contract between the registry and the code
// packaged inside an extension: the Module lifecycle interface, the Context an
// extension receives at initialization, the Exports builder through which a
// module hands its callables to the registry, and the error taxonomy shared by
// every registry operation.
package extension
