package browser

// Scripts evaluated inside the page. Element-scoped scripts receive the
// element as `this`.

// scrollToScript walks up from the element to the first ancestor whose
// computed overflow-y is neither visible nor hidden and whose content
// overflows, then positions the element `top` pixels below that
// ancestor's top edge. Falls back to the document body.
const scrollToScript = `(top) => {
	const getScrollParent = (node) => {
		if (!node || node === document.body) return document.body;
		const overflowY = window.getComputedStyle(node).overflowY;
		const scrollable = overflowY !== "visible" && overflowY !== "hidden";
		if (scrollable && node.scrollHeight >= node.clientHeight) return node;
		return getScrollParent(node.parentElement);
	};
	const parent = getScrollParent(this);
	parent.scrollTop = this.offsetTop - parent.offsetTop - top;
}`

// maxScrollScript measures how far the element's scroll ancestor extends
// beyond the window, for growing the viewport before a fullPage capture.
const maxScrollScript = `() => {
	const getScrollParent = (node) => {
		if (!node || node === document.body) return document.body;
		const overflowY = window.getComputedStyle(node).overflowY;
		const scrollable = overflowY === "scroll" || overflowY === "auto";
		if (scrollable && node.scrollHeight > node.clientHeight) return node;
		return getScrollParent(node.parentElement);
	};
	const parent = getScrollParent(this);
	const limit = Math.max(
		document.body.scrollHeight,
		document.body.offsetHeight,
		document.body.clientHeight,
		document.documentElement.scrollHeight,
		document.documentElement.offsetHeight,
		document.documentElement.clientHeight,
		parent.scrollHeight,
		parent.offsetHeight,
		parent.clientHeight,
	);
	return Math.max(0, limit - window.innerHeight);
}`

// borderScript overlays a fixed-position border div on the given rect.
const borderScript = `(border, x, y, width, height) => {
	const div = document.createElement("div");
	document.body.appendChild(div);
	div.style.boxSizing = "border-box";
	div.style.position = "fixed";
	div.style.top = y + "px";
	div.style.left = x + "px";
	div.style.width = width + "px";
	div.style.height = height + "px";
	div.style.border = border;
	div.style.zIndex = "10000";
}`
