package stats

import "reflect"
import "strconv"
import "strings"
import "sync/atomic"

type Counter_t int64

func (c *Counter_t) Inc() {
	atomic.AddInt64((*int64)(c), 1)
}

func (c *Counter_t) Get() int64 {
	return atomic.LoadInt64((*int64)(c))
}

// Stats2String renders every Counter_t field of the struct st (or of the
// struct it points to).
func Stats2String(st interface{}) string {
	v := reflect.ValueOf(st)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	s := ""
	for i := 0; i < v.NumField(); i++ {
		t := v.Field(i).Type().String()
		if strings.HasSuffix(t, "Counter_t") {
			f := v.Field(i)
			n := f.Int()
			if f.CanAddr() {
				n = f.Addr().Interface().(*Counter_t).Get()
			}
			s += "\n\t#" + v.Type().Field(i).Name + ": " + strconv.FormatInt(n, 10)
		}
	}
	return s + "\n"
}
