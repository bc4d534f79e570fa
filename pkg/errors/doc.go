// Package errors provides the structured error type shared by the class
// synthesizer and the call dispatcher.
//
// Every error carries a Kind:
//
//   - configuration: the code generation facility is not available (the
//     bridge runtime is not installed in the class loader). Fatal.
//   - binding: a collaborator contract is missing, for example the parent
//     type has no (long, Object[]) constructor. Raised while synthesizing.
//   - synthesis: the accumulated class shape is inconsistent. Raised when the
//     class is finalized.
//   - dispatch: a call into the foreign runtime failed. The foreign error is
//     kept as the cause.
//
// Use the Builder for structured construction:
//
//	err := errors.New(errors.KindBinding).
//		Class("demo/Widget").
//		Member("<init>(I)V").
//		Detail("parent %s has no bridging constructor", parent).
//		Build()
//
// All errors support errors.Is against the Err* sentinels and errors.As.
package errors
