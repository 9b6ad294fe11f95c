package syscall

import "github.com/gear-tech/gear-sub008/common"

// selfInspectionHandler implements the read-only gr_* getters (spec.md
// §4.4 "Self-inspection"). None of these produce journal notes; they only
// charge gas and surface state already known to the context.
type selfInspectionHandler struct{}

func NewSelfInspectionHandler() Handler { return &selfInspectionHandler{} }

func (h *selfInspectionHandler) CanHandle(name string) bool {
	switch name {
	case "gr_message_id", "gr_program_id", "gr_source", "gr_value",
		"gr_value_available", "gr_size", "gr_read", "gr_gas_available",
		"gr_env_vars", "gr_block_height", "gr_block_timestamp", "gr_random":
		return true
	}
	return false
}

func (h *selfInspectionHandler) MessageId(ctx *Context) (common.MessageId, error) {
	return ctx.Current.Id, ctx.chargeFixed("gr_message_id", 0)
}

func (h *selfInspectionHandler) ProgramId(ctx *Context) (common.ActorId, error) {
	return ctx.Program, ctx.chargeFixed("gr_program_id", 0)
}

func (h *selfInspectionHandler) Source(ctx *Context) (common.ActorId, error) {
	return ctx.Current.Source, ctx.chargeFixed("gr_source", 0)
}

func (h *selfInspectionHandler) Value(ctx *Context) (uint64, error) {
	return ctx.Current.Value, ctx.chargeFixed("gr_value", 0)
}

func (h *selfInspectionHandler) ValueAvailable(ctx *Context, balance uint64) (uint64, error) {
	return balance, ctx.chargeFixed("gr_value_available", 0)
}

func (h *selfInspectionHandler) Size(ctx *Context) (uint32, error) {
	return uint32(len(ctx.Current.Payload)), ctx.chargeFixed("gr_size", 0)
}

// Read copies length bytes of the current message's payload starting at
// "at" into guest memory at ptr (gr_read(ptr,len,at) in spec.md §4.4),
// through the memory access manager's register/pre-process/write protocol.
func (h *selfInspectionHandler) Read(ctx *Context, ptr, at, length uint32) (RecoverableError, error) {
	if err := ctx.chargeFixed("gr_read", uint64(length)); err != nil {
		return ErrNone, err
	}
	if uint64(at)+uint64(length) > uint64(len(ctx.Current.Payload)) {
		return ErrMemoryAccess, nil
	}
	if err := ctx.writeGuest(ptr, ctx.Current.Payload[at:at+length]); err != nil {
		return ErrMemoryAccess, nil
	}
	return ErrNone, nil
}

// EnvVars returns the host-provided environment variables visible to the
// guest (chain-level constants such as existential deposit, mailbox
// threshold); the set is fixed per block and opaque to this package.
func (h *selfInspectionHandler) EnvVars(ctx *Context, vars map[string]string) (map[string]string, error) {
	return vars, ctx.chargeFixed("gr_env_vars", 0)
}

func (h *selfInspectionHandler) GasAvailable(ctx *Context) (uint64, error) {
	return ctx.Gas.Left(), ctx.chargeFixed("gr_gas_available", 0)
}

func (h *selfInspectionHandler) BlockHeight(ctx *Context) (uint64, error) {
	return ctx.BlockHeight, ctx.chargeFixed("gr_block_height", 0)
}

func (h *selfInspectionHandler) BlockTimestamp(ctx *Context) (uint64, error) {
	return ctx.BlockTimestamp, ctx.chargeFixed("gr_block_timestamp", 0)
}

func (h *selfInspectionHandler) Random(ctx *Context, salt []byte) (common.Hash, error) {
	if err := ctx.chargeFixed("gr_random", uint64(len(salt))); err != nil {
		return common.Hash{}, err
	}
	if ctx.RandomSeed == nil {
		return common.Hash{}, nil
	}
	return ctx.RandomSeed(salt), nil
}
