package proc

import "runtime"

// Context_t is a suspended flow of control: a scheduler loop or a kernel
// thread's goroutine parked on its wake channel.
type Context_t struct {
	wake chan struct{}
	// runs on a new goroutine the first time the context is resumed
	entry   func()
	started bool
	// the goroutine is gone; resuming the context is a bug
	dead bool
}

func (ctx *Context_t) resume() {
	if ctx.dead {
		panic("zombie exit")
	}
	if !ctx.started {
		ctx.started = true
		go ctx.entry()
		return
	}
	ctx.wake <- struct{}{}
}

// Swtch saves the current flow in old and resumes new. it returns when
// something switches back to old.
func Swtch(old, new *Context_t) {
	new.resume()
	<-old.wake
}

// swtchfinal resumes new and terminates the calling goroutine. old can never
// be resumed again.
func swtchfinal(old, new *Context_t) {
	old.dead = true
	new.resume()
	runtime.Goexit()
}
