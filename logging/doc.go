// Package logging provides the structured logging helpers shared by the
// session engine packages.
//
// All packages log through logrus with a "function" field naming the
// operation, the way the rest of the module does. Logger bundles the fields
// for a package and function so that code paths which log several times do
// not repeat them.
//
// The hosting application receives log output through a SinkHook, which
// forwards each formatted entry to a plain func(string):
//
//	logrus.AddHook(logging.NewSinkHook(func(line string) {
//	    logWindow.Append(line)
//	}, logrus.InfoLevel))
package logging
