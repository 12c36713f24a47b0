package commerce

// GraphQL documents for the commerce gateway. Variables are always passed
// separately, never interpolated into the query text.
const (
	searchProductsQuery = `
query SearchProducts($search: String!, $pageSize: Int!, $currentPage: Int!) {
  products(search: $search, pageSize: $pageSize, currentPage: $currentPage) {
    total_count
    items {
      id
      sku
      name
      brand
      price
      original_price
      rating
      availability
      unit
      image_url
    }
  }
}`

	productBySKUQuery = `
query ProductBySKU($sku: String!) {
  products(filter: { sku: { eq: $sku } }) {
    items {
      id
      sku
      name
      brand
      price
      original_price
      rating
      availability
      unit
      image_url
    }
  }
}`

	productByArtNoQuery = `
query ProductByArtNo($artNo: String!) {
  products(filter: { art_no: { eq: $artNo } }) {
    items {
      id
      sku
      name
      brand
      price
      original_price
      rating
      availability
      unit
      image_url
    }
  }
}`

	createGuestCartMutation = `
mutation CreateGuestCart {
  createEmptyCart
}`

	customerCartQuery = `
query CustomerCart {
  customerCart {
    id
  }
}`

	addToCartMutation = `
mutation AddToCart($cartId: String!, $sku: String!, $quantity: Float!) {
  addProductsToCart(cartId: $cartId, cartItems: [{ sku: $sku, quantity: $quantity }]) {
    cart {
      id
      items {
        product {
          name
          sku
        }
        quantity
        prices {
          price {
            value
          }
        }
      }
      prices {
        grand_total {
          value
        }
      }
    }
  }
}`

	cartDetailQuery = `
query CartDetail($cartId: String!) {
  cart(cart_id: $cartId) {
    id
    items {
      product {
        name
        sku
      }
      quantity
      prices {
        price {
          value
        }
      }
    }
    prices {
      grand_total {
        value
      }
    }
  }
}`

	loginMutation = `
mutation Login($email: String!, $password: String!) {
  generateCustomerToken(email: $email, password: $password) {
    token
  }
}`

	mcardLoginMutation = `
mutation LoginWithMcard($cardNumber: String!) {
  generateCustomerTokenMcard(card_number: $cardNumber) {
    token
    store_view_code
  }
}`

	storeConfigQuery = `
query StoreConfig {
  storeConfig {
    customer_access_token_lifetime
  }
}`
)
