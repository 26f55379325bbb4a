package jcanvas

import "github.com/leijurv/jpegtools_go/jpegcoef"

// cleanups holds release functions for resources acquired during one
// operation. They run last-in first-out if the operation fails.
type cleanups struct {
	fns []func() error
}

func (cl *cleanups) add(fn func() error) {
	cl.fns = append(cl.fns, fn)
}

func (cl *cleanups) run() {
	for i := len(cl.fns) - 1; i >= 0; i-- {
		cl.fns[i]()
	}
	cl.fns = nil
}

// guard runs a codec-touching operation. A *jpegcoef.FatalError raised inside
// f becomes a KindCodecFatal error; any other panic propagates. When f fails
// either way, the cleanups it registered are run.
func (c *Canvas) guard(op string, f func(cl *cleanups) error) (err error) {
	var cl cleanups
	defer func() {
		r := recover()
		if r == nil {
			if err != nil {
				cl.run()
			}
			return
		}
		fe, ok := r.(*jpegcoef.FatalError)
		if !ok {
			panic(r)
		}
		cl.run()
		c.logf("%s: codec fatal error: %s", op, fe.Message)
		err = &Error{Kind: KindCodecFatal, Op: op, Message: fe.Message, Err: fe}
	}()
	return f(&cl)
}
