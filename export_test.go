package cogito

var CtxWithLogger = ctxWithLogger
var CtxWithCycleID = ctxWithCycleID
